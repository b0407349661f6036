package events

import (
	"encoding/json"
	"fmt"
)

// SetBatchStartedData sets the Data field with BatchStartedData in a type-safe way.
func (e *AuditEntry) SetBatchStartedData(data BatchStartedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert BatchStartedData to map: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetBatchStartedData retrieves BatchStartedData from the Data field.
func (e *AuditEntry) GetBatchStartedData() (*BatchStartedData, error) {
	var data BatchStartedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse BatchStartedData: %w", err)
	}
	return &data, nil
}

// SetBatchCompletedData sets the Data field with BatchCompletedData in a type-safe way.
func (e *AuditEntry) SetBatchCompletedData(data BatchCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert BatchCompletedData to map: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetBatchCompletedData retrieves BatchCompletedData from the Data field.
func (e *AuditEntry) GetBatchCompletedData() (*BatchCompletedData, error) {
	var data BatchCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse BatchCompletedData: %w", err)
	}
	return &data, nil
}

// DecodeData unmarshals the entry's snapshot into target.
func (e *AuditEntry) DecodeData(target interface{}) error {
	return mapToStruct(e.Data, target)
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
