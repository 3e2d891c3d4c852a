// Package config loads rmtree configuration from global and local YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/rmtree/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds the server connection and command defaults.
type ApplicationConfiguration struct {
	Server    ServerConfiguration    `mapstructure:"server"`
	Traversal TraversalConfiguration `mapstructure:"traversal"`
	Output    OutputConfiguration    `mapstructure:"output"`
}

// ServerConfiguration describes how to reach the requirements server.
type ServerConfiguration struct {
	Host               string         `mapstructure:"host"`
	Username           string         `mapstructure:"username"`
	Password           string         `mapstructure:"password"`
	PasswordEnv        string         `mapstructure:"password_env"`
	UserAgent          string         `mapstructure:"user_agent"`
	InsecureSkipVerify *bool          `mapstructure:"insecure_skip_verify"`
	PageSize           *int           `mapstructure:"page_size"`
	RateLimit          *float64       `mapstructure:"rate_limit"`
	RetryAttempts      *int           `mapstructure:"retry_attempts"`
	Timeout            *time.Duration `mapstructure:"timeout"`
}

// TraversalConfiguration sets defaults for the descendants command.
type TraversalConfiguration struct {
	Workers        *int           `mapstructure:"workers"`
	PollInterval   *time.Duration `mapstructure:"poll_interval"`
	CallTimeout    *time.Duration `mapstructure:"call_timeout"`
	Tags           *bool          `mapstructure:"tags"`
	Predicate      string         `mapstructure:"predicate"`
	ContainerTypes []int          `mapstructure:"container_types"`
}

// OutputConfiguration controls rendering.
type OutputConfiguration struct {
	Format string `mapstructure:"format"`
	Copy   *bool  `mapstructure:"copy"`
}

// LoadApplicationConfiguration loads configuration from global and local files.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	merged.Traversal.ContainerTypes = utils.DeduplicateIntegers(merged.Traversal.ContainerTypes)
	merged.Server.Password = utils.ResolveSecret(merged.Server.Password, utils.FirstNonEmpty(merged.Server.PasswordEnv, utils.PasswordEnvironmentVariable))

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Server = result.Server.merge(override.Server)
	result.Traversal = result.Traversal.merge(override.Traversal)
	result.Output = result.Output.merge(override.Output)
	return result
}

func (config ServerConfiguration) merge(override ServerConfiguration) ServerConfiguration {
	result := config
	if override.Host != "" {
		result.Host = override.Host
	}
	if override.Username != "" {
		result.Username = override.Username
	}
	if override.Password != "" {
		result.Password = override.Password
	}
	if override.PasswordEnv != "" {
		result.PasswordEnv = override.PasswordEnv
	}
	if override.UserAgent != "" {
		result.UserAgent = override.UserAgent
	}
	if override.InsecureSkipVerify != nil {
		result.InsecureSkipVerify = clonePointer(override.InsecureSkipVerify)
	}
	if override.PageSize != nil {
		result.PageSize = clonePointer(override.PageSize)
	}
	if override.RateLimit != nil {
		result.RateLimit = clonePointer(override.RateLimit)
	}
	if override.RetryAttempts != nil {
		result.RetryAttempts = clonePointer(override.RetryAttempts)
	}
	if override.Timeout != nil {
		result.Timeout = clonePointer(override.Timeout)
	}
	return result
}

func (config TraversalConfiguration) merge(override TraversalConfiguration) TraversalConfiguration {
	result := config
	if override.Workers != nil {
		result.Workers = clonePointer(override.Workers)
	}
	if override.PollInterval != nil {
		result.PollInterval = clonePointer(override.PollInterval)
	}
	if override.CallTimeout != nil {
		result.CallTimeout = clonePointer(override.CallTimeout)
	}
	if override.Tags != nil {
		result.Tags = clonePointer(override.Tags)
	}
	if override.Predicate != "" {
		result.Predicate = override.Predicate
	}
	if len(override.ContainerTypes) > 0 {
		result.ContainerTypes = append([]int{}, utils.DeduplicateIntegers(override.ContainerTypes)...)
	}
	return result
}

func (config OutputConfiguration) merge(override OutputConfiguration) OutputConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.Copy != nil {
		result.Copy = clonePointer(override.Copy)
	}
	return result
}

func clonePointer[T any](value *T) *T {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
