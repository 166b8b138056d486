package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Dispatch configures cmd/resvdispatch.
type Dispatch struct {
	Token    string
	Owner    string
	Repo     string
	Workflow string
	Ref      string
	BaseURL  string
	LogLevel string
}

// LoadDispatch reads GITHUB_TOKEN and DISPATCH_* from the environment.
func LoadDispatch() Dispatch {
	v := viper.New()
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ref", "main")
	v.SetDefault("base_url", "https://api.github.com")
	v.SetDefault("log_level", "info")

	_ = v.BindEnv("token", "DISPATCH_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("owner", "DISPATCH_OWNER")
	_ = v.BindEnv("repo", "DISPATCH_REPO")
	_ = v.BindEnv("workflow", "DISPATCH_WORKFLOW")
	_ = v.BindEnv("ref", "DISPATCH_REF")
	_ = v.BindEnv("base_url", "DISPATCH_BASE_URL")
	_ = v.BindEnv("log_level", "DISPATCH_LOG_LEVEL", "LOG_LEVEL")

	return Dispatch{
		Token:    strings.TrimSpace(v.GetString("token")),
		Owner:    strings.TrimSpace(v.GetString("owner")),
		Repo:     strings.TrimSpace(v.GetString("repo")),
		Workflow: strings.TrimSpace(v.GetString("workflow")),
		Ref:      strings.TrimSpace(v.GetString("ref")),
		BaseURL:  strings.TrimSpace(v.GetString("base_url")),
		LogLevel: v.GetString("log_level"),
	}
}
