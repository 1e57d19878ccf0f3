/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */
package misc

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var secretsMap = map[string]string{}

// SecretKeys returns the sorted names of every environment variable and loaded secret.
func SecretKeys() []string {
	var uniqKeys = map[string]bool{}
	for _, envVal := range os.Environ() {
		key, _, _ := strings.Cut(envVal, "=")
		uniqKeys[key] = true
	}
	for k := range secretsMap {
		uniqKeys[k] = true
	}
	var retStrings []string
	for k := range uniqKeys {
		retStrings = append(retStrings, k)
	}
	slices.Sort(retStrings)
	return retStrings
}

func GetSecret(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return secretsMap[key]
}

// LoadSecretsDir reads every regular file in dir (ie: a mounted /run/secrets) as a secret named
// after the file. A missing dir is not an error.
func LoadSecretsDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading secrets dir %s: %w", dir, err)
	}
	var loaded int
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		val, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("reading secret %s: %w", entry.Name(), err)
		}
		secretsMap[entry.Name()] = strings.TrimSpace(string(val))
		loaded++
	}
	return loaded, nil
}
