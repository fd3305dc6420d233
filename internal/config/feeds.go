package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FeedSpec describes a mock price feed provisioned at startup.
type FeedSpec struct {
	Ref      string `yaml:"ref"`
	Decimals int32  `yaml:"decimals"`
	Answer   string `yaml:"answer"`
}

// Validate checks that the feed has a reference and an integer answer.
func (f FeedSpec) Validate() error {
	if f.Ref == "" {
		return fmt.Errorf("feed ref is required")
	}
	if f.Decimals < 0 || f.Decimals > 36 {
		return fmt.Errorf("feed %s: decimals must be between 0 and 36", f.Ref)
	}
	answer, err := decimal.NewFromString(f.Answer)
	if err != nil {
		return fmt.Errorf("feed %s: invalid answer: %w", f.Ref, err)
	}
	if !answer.IsInteger() {
		return fmt.Errorf("feed %s: answer must be an integer", f.Ref)
	}
	return nil
}

type feedsFile struct {
	Feeds []FeedSpec `yaml:"feeds"`
}

// LoadFeedsFile parses a YAML table of feeds:
//
//	feeds:
//	  - ref: eth-usd
//	    decimals: 8
//	    answer: "200000000000"
func LoadFeedsFile(path string) ([]FeedSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var file feedsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}

	for _, f := range file.Feeds {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("feeds file: %w", err)
		}
	}
	return file.Feeds, nil
}
