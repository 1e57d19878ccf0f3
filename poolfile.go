package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/TxnLab/stakepoolmgr/internal/lib/sol"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

// PoolDefinition is the yaml form of a new pool, as read by `pool create --file`.
//
//	name: my-pool
//	manager: <base58>
//	epoch_fee: 3%
//	withdrawal_fee: 1/1000
//	capacity: 100
//	metadata:
//	  name: My Pool SOL
//	  symbol: mySOL
//	  uri: https://example.com/pool.json
//	validators:
//	  - vote: <base58>
//	    stake: 1.5
type PoolDefinition struct {
	Name          string                `yaml:"name"`
	Manager       string                `yaml:"manager"`
	Staker        string                `yaml:"staker,omitempty"`
	EpochFee      string                `yaml:"epoch_fee"`
	WithdrawalFee string                `yaml:"withdrawal_fee,omitempty"`
	DepositFee    string                `yaml:"deposit_fee,omitempty"`
	ReferralFee   uint8                 `yaml:"referral_fee,omitempty"`
	Capacity      uint32                `yaml:"capacity"`
	Metadata      *MetadataDefinition   `yaml:"metadata,omitempty"`
	Validators    []ValidatorDefinition `yaml:"validators,omitempty"`
}

type MetadataDefinition struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
	URI    string `yaml:"uri"`
}

type ValidatorDefinition struct {
	Vote string `yaml:"vote"`
	// Stake is in SOL
	Stake string `yaml:"stake,omitempty"`
}

func LoadPoolDefinition(path string) (*PoolDefinition, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	var def PoolDefinition
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("error parsing pool definition %s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool definition %s: %w", path, err)
	}
	return &def, nil
}

func (d *PoolDefinition) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if d.Capacity == 0 {
		errs = append(errs, errors.New("capacity must be at least 1"))
	}
	if d.ReferralFee > stakepool.MaxReferralFee {
		errs = append(errs, fmt.Errorf("referral_fee %d is over %d", d.ReferralFee, stakepool.MaxReferralFee))
	}
	if len(d.Validators) > int(d.Capacity) {
		errs = append(errs, fmt.Errorf("%d validators listed for a capacity of %d", len(d.Validators), d.Capacity))
	}
	if _, err := d.CreateParams(); err != nil {
		errs = append(errs, err)
	}
	if d.Metadata != nil {
		errs = append(errs, d.Metadata.Validate())
	}
	seen := map[string]bool{}
	for _, v := range d.Validators {
		if _, _, err := v.parse(); err != nil {
			errs = append(errs, err)
		}
		if seen[v.Vote] {
			errs = append(errs, fmt.Errorf("validator %s listed twice", v.Vote))
		}
		seen[v.Vote] = true
	}
	return errors.Join(errs...)
}

// CreateParams converts the definition. Pool account addresses are left for the caller to fill in.
func (d *PoolDefinition) CreateParams() (stakepool.CreateParams, error) {
	params := stakepool.CreateParams{
		ReferralFee: d.ReferralFee,
		Capacity:    d.Capacity,
	}
	var err error
	params.Manager, err = solana.PublicKeyFromBase58(d.Manager)
	if err != nil {
		return params, fmt.Errorf("invalid manager %q: %w", d.Manager, err)
	}
	if d.Staker != "" {
		params.Staker, err = solana.PublicKeyFromBase58(d.Staker)
		if err != nil {
			return params, fmt.Errorf("invalid staker %q: %w", d.Staker, err)
		}
	}
	for _, fee := range []struct {
		name  string
		value string
		into  *stakepool.Fee
	}{
		{"epoch_fee", d.EpochFee, &params.Fee},
		{"withdrawal_fee", d.WithdrawalFee, &params.WithdrawalFee},
		{"deposit_fee", d.DepositFee, &params.DepositFee},
	} {
		if fee.value == "" {
			*fee.into = stakepool.ZeroFee
			continue
		}
		*fee.into, err = stakepool.ParseFee(fee.value)
		if err != nil {
			return params, fmt.Errorf("%s: %w", fee.name, err)
		}
		if err := fee.into.Validate(); err != nil {
			return params, fmt.Errorf("%s: %w", fee.name, err)
		}
	}
	return params, nil
}

func (m *MetadataDefinition) Validate() error {
	var errs []error
	for _, field := range []struct {
		name  string
		value string
		max   int
	}{
		{"metadata name", m.Name, stakepool.MaxNameLength},
		{"metadata symbol", m.Symbol, stakepool.MaxSymbolLength},
		{"metadata uri", m.URI, stakepool.MaxURILength},
	} {
		if len(field.value) > field.max {
			errs = append(errs, fmt.Errorf("%s is %d bytes, max is %d", field.name, len(field.value), field.max))
		}
		if !utf8.ValidString(field.value) {
			errs = append(errs, fmt.Errorf("%s is not valid utf-8", field.name))
		}
		if strings.ContainsRune(field.value, 0) {
			errs = append(errs, fmt.Errorf("%s contains a NUL byte", field.name))
		}
	}
	if m.Name == "" || m.Symbol == "" {
		errs = append(errs, errors.New("metadata name and symbol are required"))
	}
	return errors.Join(errs...)
}

func (v ValidatorDefinition) parse() (solana.PublicKey, uint64, error) {
	vote, err := solana.PublicKeyFromBase58(v.Vote)
	if err != nil {
		return vote, 0, fmt.Errorf("invalid validator vote account %q: %w", v.Vote, err)
	}
	if v.Stake == "" {
		return vote, 0, nil
	}
	lamports, err := sol.ParseSolAmount(v.Stake)
	if err != nil {
		return vote, 0, fmt.Errorf("validator %s: %w", v.Vote, err)
	}
	return vote, lamports, nil
}
