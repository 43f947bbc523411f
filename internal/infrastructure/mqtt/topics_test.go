package mqtt

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTopicFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"doorbell/events", false},
		{"doorbell/+/events", false},
		{"doorbell/#", false},
		{"#", false},
		{"+", false},
		{"/will", false},
		{"", true},
		{"doorbell/#/front", true},
		{"doorbell/front#", true},
		{"doorbell/fr+nt", true},
		{"door\x00bell", true},
		{strings.Repeat("a", maxTopicLength+1), true},
	}

	for _, tt := range tests {
		name := tt.filter
		if len(name) > 32 {
			name = name[:32]
		}
		t.Run(name, func(t *testing.T) {
			err := ValidateTopicFilter(tt.filter)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTopicFilter(%q) error = %v, wantErr %v", name, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("error %v does not wrap ErrInvalidTopic", err)
			}
		})
	}
}

func TestValidatePublishTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"status", false},
		{"doorbell/front/ring", false},
		{"", true},
		{"doorbell/+", true},
		{"doorbell/#", true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := ValidatePublishTopic(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePublishTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			}
		})
	}
}
