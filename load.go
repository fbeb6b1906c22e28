package redo

import (
	"time"

	"github.com/juju/errors"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// fileConfig is the serialized form of the scalar settings of a [Config].
type fileConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxTries     int           `mapstructure:"max_tries"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FastTrack    bool          `mapstructure:"fast_track"`
	NoWarn       bool          `mapstructure:"no_warn"`
	NoError      bool          `mapstructure:"no_error"`
	BrandErrors  bool          `mapstructure:"brand_errors"`
	Trace        bool          `mapstructure:"trace"`
}

// LoadConfig reads a [Config] from YAML. Durations use [time.ParseDuration]
// syntax:
//
//	initial_delay: 250ms
//	max_delay: 10s
//	max_tries: 5
//	timeout: 1m
//	fast_track: true
//	brand_errors: true
//
// Unknown keys are rejected. Settings that hold functions or collectors can
// only be set in code.
func LoadConfig(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, errors.Annotate(err, "parsing retry config")
	}
	var fc fileConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &fc,
	})
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, errors.Annotate(err, "decoding retry config")
	}
	for name, d := range map[string]time.Duration{
		"initial_delay": fc.InitialDelay,
		"max_delay":     fc.MaxDelay,
	} {
		if d < 0 {
			return Config{}, errors.NotValidf("%s %v", name, d)
		}
	}
	return Config{
		InitialDelay: fc.InitialDelay,
		MaxDelay:     fc.MaxDelay,
		MaxTries:     fc.MaxTries,
		Timeout:      fc.Timeout,
		FirstFast:    fc.FastTrack,
		NoWarn:       fc.NoWarn,
		NoError:      fc.NoError,
		BrandErrors:  fc.BrandErrors,
		Trace:        fc.Trace,
	}, nil
}
