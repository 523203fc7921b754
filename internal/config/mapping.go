package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BartekS5/docshift/pkg/models"
)

// LoadSchemas reads a JSON file mapping table names to field rules:
//
//	{"users": {"name": {"required": true, "maxLength": 64}}}
func LoadSchemas(filePath string) (map[string]models.Schema, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file '%s': %w", filePath, err)
	}

	var schemas map[string]models.Schema
	if err := json.Unmarshal(bytes, &schemas); err != nil {
		return nil, fmt.Errorf("failed to parse schema file '%s': %w", filePath, err)
	}

	return schemas, nil
}
