package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// campaignManifest describes a campaign and its milestones in one file so a
// creator can publish both in a single CLI invocation.
type campaignManifest struct {
	Creator          string              `yaml:"creator"`
	Title            string              `yaml:"title"`
	ShortDescription string              `yaml:"shortDescription"`
	Category         string              `yaml:"category"`
	CoverImageRef    string              `yaml:"coverImageRef"`
	StoryRef         string              `yaml:"storyRef"`
	FundingGoal      uint64              `yaml:"fundingGoal"`
	DurationDays     uint64              `yaml:"durationDays"`
	Milestones       []milestoneManifest `yaml:"milestones"`
}

type milestoneManifest struct {
	Title        string `yaml:"title"`
	TargetAmount uint64 `yaml:"targetAmount"`
}

func loadManifest(path string) (*campaignManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return parseManifest(data)
}

func parseManifest(data []byte) (*campaignManifest, error) {
	var m campaignManifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if strings.TrimSpace(m.Creator) == "" {
		return nil, fmt.Errorf("manifest: creator required")
	}
	if strings.TrimSpace(m.Title) == "" {
		return nil, fmt.Errorf("manifest: title required")
	}
	if m.FundingGoal == 0 {
		return nil, fmt.Errorf("manifest: fundingGoal must be positive")
	}
	for i, ms := range m.Milestones {
		if strings.TrimSpace(ms.Title) == "" || ms.TargetAmount == 0 {
			return nil, fmt.Errorf("manifest: milestone %d needs a title and a positive targetAmount", i)
		}
	}
	return &m, nil
}

func (m *campaignManifest) createParams() map[string]interface{} {
	return map[string]interface{}{
		"creator":          m.Creator,
		"title":            m.Title,
		"shortDescription": m.ShortDescription,
		"category":         m.Category,
		"coverImageRef":    m.CoverImageRef,
		"storyRef":         m.StoryRef,
		"fundingGoal":      strconv.FormatUint(m.FundingGoal, 10),
		"durationDays":     m.DurationDays,
	}
}
