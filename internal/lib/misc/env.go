/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */

package misc

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads .env.local then .env. Values already in the environment win.
func LoadEnvSettings(log *slog.Logger) {
	loadEnvFiles(log, ".env.local", ".env")
}

// LoadEnvForNetwork loads .env.{network}.local then .env.{network}.
func LoadEnvForNetwork(log *slog.Logger, network string) {
	loadEnvFiles(log, fmt.Sprintf(".env.%s.local", network), fmt.Sprintf(".env.%s", network))
}

func loadEnvFiles(log *slog.Logger, files ...string) {
	for _, file := range files {
		if err := godotenv.Load(file); err == nil {
			Debugf(log, "loaded environment from %s", file)
		}
	}
}
