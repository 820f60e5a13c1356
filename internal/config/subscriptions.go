package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"poolScout/internal/model"
)

// SubscriptionFile is the YAML document listing standing subscriptions.
type SubscriptionFile struct {
	Subscriptions []model.SubscriptionRequest `yaml:"subscriptions"`
}

// LoadSubscriptions reads subscription requests from a YAML file.
func LoadSubscriptions(path string) ([]model.SubscriptionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}

	var file SubscriptionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse subscriptions: %w", err)
	}
	return file.Subscriptions, nil
}
