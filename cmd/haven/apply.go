package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haven-hvn/haven/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a configuration file",
	Long: `Apply Haven job definitions from a YAML file.

Examples:
  # Apply a job definition
  haven apply -f job.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

// HavenResource represents a generic Haven resource
type HavenResource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       JobSpec          `yaml:"spec"`
}

type ResourceMetadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type JobSpec struct {
	JobID     string            `yaml:"jobId,omitempty"`
	Plugin    string            `yaml:"plugin"`
	Schedule  string            `yaml:"schedule"`
	OnSuccess string            `yaml:"onSuccess,omitempty"`
	Enabled   *bool             `yaml:"enabled,omitempty"`
	Metadata  map[string]string `yaml:"metadata,omitempty"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	// Read YAML file
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	// Parse YAML
	var resource HavenResource
	if err := yaml.Unmarshal(data, &resource); err != nil {
		return fmt.Errorf("failed to parse YAML: %v", err)
	}

	switch resource.Kind {
	case "Job":
		return applyJob(&resource)
	default:
		return fmt.Errorf("unknown resource kind: %s", resource.Kind)
	}
}

func applyJob(resource *HavenResource) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	job := types.NewJob(resource.Metadata.Name, resource.Spec.Plugin, resource.Spec.Schedule)
	if resource.Spec.JobID != "" {
		id, err := uuid.Parse(resource.Spec.JobID)
		if err != nil {
			return fmt.Errorf("invalid jobId: %w", err)
		}
		job.ID = id
	}
	if resource.Spec.OnSuccess != "" {
		job.OnSuccess = types.OnSuccess(resource.Spec.OnSuccess)
	}
	if resource.Spec.Enabled != nil {
		job.Enabled = *resource.Spec.Enabled
	}
	if resource.Spec.Metadata != nil {
		job.Metadata = resource.Spec.Metadata
	}

	if err := application.Scheduler.Add(context.Background(), job); err != nil {
		return err
	}

	fmt.Printf("Applied job %s (%s)\n", job.Name, job.ID)
	return nil
}
