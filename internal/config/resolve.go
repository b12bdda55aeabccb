package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dmagro/poagov/internal/chain"
	"github.com/dmagro/poagov/internal/contract"
)

type parsedContract struct {
	kind    contract.Kind
	version contract.Version
	address common.Address
}

func (ct Contract) parse() (parsedContract, error) {
	kind, err := contract.ParseKind(ct.Kind)
	if err != nil {
		return parsedContract{}, err
	}
	version, err := contract.ParseVersion(ct.Version)
	if err != nil {
		return parsedContract{}, err
	}
	if kind == contract.Emission && version == contract.V1 {
		return parsedContract{}, contract.ErrEmissionV1NotSupported
	}
	if !common.IsHexAddress(ct.Address) {
		return parsedContract{}, fmt.Errorf("invalid %s contract address %q", kind, ct.Address)
	}
	return parsedContract{kind: kind, version: version, address: common.HexToAddress(ct.Address)}, nil
}

// Overrides are command-line values that take precedence over the file.
// Zero values leave the file setting in place.
type Overrides struct {
	Network           string
	Kinds             []contract.Kind
	Version           contract.Version
	StartBlock        string
	BlockTime         time.Duration
	NotificationLimit int
	Email             bool
	LogEmails         bool
	LogFile           string
	Verbose           bool
	MetricsListen     string
	Report            bool
}

// Settings are the resolved parameters of one run.
type Settings struct {
	Network           string
	Endpoint          string
	Timeout           time.Duration
	Contracts         []contract.Descriptor
	StartBlock        chain.StartBlock
	BlockTime         time.Duration
	NotificationLimit int
	Email             Email
	Log               Log
	MetricsListen     string
	Report            Report
}

// Resolve applies o to the config and loads the ABI of every selected
// contract.
func (c *Config) Resolve(o Overrides) (*Settings, error) {
	name := o.Network
	if name == "" {
		name = c.DefaultNetwork
	}
	if name == "" {
		names := c.NetworkNames()
		if len(names) != 1 {
			return nil, fmt.Errorf("no network selected and no default_network set (have %v)", names)
		}
		name = names[0]
	}
	network, ok := c.Networks[name]
	if !ok {
		return nil, fmt.Errorf("network %q is not configured", name)
	}

	s := &Settings{
		Network:           name,
		Endpoint:          network.Endpoint,
		Timeout:           network.Timeout,
		BlockTime:         c.BlockTime,
		NotificationLimit: c.NotificationLimit,
		Email:             c.Email,
		Log:               c.Log,
		MetricsListen:     c.Metrics.Listen,
		Report:            c.Report,
	}

	startArg := c.StartBlock
	if o.StartBlock != "" {
		startArg = o.StartBlock
	}
	start, err := chain.ParseStartBlock(startArg)
	if err != nil {
		return nil, err
	}
	s.StartBlock = start

	if o.BlockTime > 0 {
		s.BlockTime = o.BlockTime
	}
	if o.NotificationLimit > 0 {
		s.NotificationLimit = o.NotificationLimit
	}
	if o.Email {
		s.Email.Enabled = true
		if err := s.Email.validate(); err != nil {
			return nil, err
		}
	}
	if o.LogEmails {
		s.Log.LogEmails = true
	}
	if o.LogFile != "" {
		s.Log.File = o.LogFile
	}
	if o.Verbose {
		s.Log.Verbose = true
	}
	if o.MetricsListen != "" {
		s.MetricsListen = o.MetricsListen
	}
	if o.Report {
		s.Report.Enabled = true
	}

	wanted := map[contract.Kind]bool{}
	for _, k := range o.Kinds {
		wanted[k] = true
	}
	for _, ct := range network.Contracts {
		p, err := ct.parse()
		if err != nil {
			return nil, err
		}
		if len(wanted) > 0 && !wanted[p.kind] {
			continue
		}
		if o.Version != 0 && o.Version != p.version {
			continue
		}
		parsedABI, err := c.loadABI(ct, p)
		if err != nil {
			return nil, err
		}
		d, err := contract.New(p.kind, p.version, p.address, parsedABI)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		s.Contracts = append(s.Contracts, d)
	}
	if len(s.Contracts) == 0 {
		return nil, fmt.Errorf("network %s: no contracts match the selected kinds and version", name)
	}
	return s, nil
}

func (c *Config) loadABI(ct Contract, p parsedContract) (abi.ABI, error) {
	if ct.ABI == "" {
		return contract.BundledABI(p.kind, p.version)
	}
	path := ct.ABI
	if !filepath.IsAbs(path) && c.baseDir != "" {
		path = filepath.Join(c.baseDir, path)
	}
	return contract.LoadABI(path)
}
