package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Debug bool `mapstructure:"debug"`

	GitHub    GitHub  `mapstructure:"github"`
	Report    Report  `mapstructure:"report"`
	Publish   Publish `mapstructure:"publish"`
	CacheFile string  `mapstructure:"cache"`
}

type GitHub struct {
	Token        string `mapstructure:"token"`
	Owner        string `mapstructure:"owner"`
	Repo         string `mapstructure:"repo"`
	ArtifactName string `mapstructure:"artifact"`
}

type Report struct {
	Dir       string `mapstructure:"dir"`
	ServeAddr string `mapstructure:"serve"`
}

type Publish struct {
	PagesRepo string `mapstructure:"pages_repo"`
	S3Bucket  string `mapstructure:"s3_bucket"`
}

const DefaultFile = "capybara.yaml"

var ErrNoToken = errors.New("a GitHub access token is required (set GITHUB_TOKEN or pass --token)")

func defaults() map[string]any {
	return map[string]any{
		"debug": false,
		"cache": "capybara.sqlite",
		"github": map[string]any{
			"owner":    "eic",
			"repo":     "EICrecon",
			"artifact": "rec_dis_18x275_minQ2=1000_craterlake_18x275.edm4eic.root",
		},
		"report": map[string]any{
			"dir":   "capybara-reports",
			"serve": "127.0.0.1:24535",
		},
		"publish": map[string]any{
			"pages_repo": "capybara-reports",
		},
	}
}

// environment variable -> section, key
var envBindings = map[string][2]string{
	"GITHUB_TOKEN":        {"github", "token"},
	"CAPYBARA_OWNER":      {"github", "owner"},
	"CAPYBARA_REPO":       {"github", "repo"},
	"CAPYBARA_ARTIFACT":   {"github", "artifact"},
	"CAPYBARA_REPORT_DIR": {"report", "dir"},
	"CAPYBARA_SERVE":      {"report", "serve"},
	"CAPYBARA_PAGES_REPO": {"publish", "pages_repo"},
	"CAPYBARA_S3_BUCKET":  {"publish", "s3_bucket"},
	"CAPYBARA_CACHE":      {"", "cache"},
	"CAPYBARA_DEBUG":      {"", "debug"},
}

func CreateConfig(ctx context.Context) (*Config, error) {
	path := os.Getenv("CAPYBARA_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	return Load(path, explicit, os.LookupEnv)
}

// Load builds a Config from defaults, the yaml file at path and the
// environment. A missing file is only an error when required is set.
func Load(path string, required bool, lookup func(string) (string, bool)) (*Config, error) {
	values := defaults()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			fromFile := map[string]any{}
			if err := yaml.Unmarshal(content, &fromFile); err != nil {
				return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
			}
			merge(values, fromFile)

		case errors.Is(err, fs.ErrNotExist) && !required:

		default:
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	for env, target := range envBindings {
		val, found := lookup(env)
		if !found || val == "" {
			continue
		}

		section, key := target[0], target[1]
		if section == "" {
			values[key] = val
			continue
		}

		sub, ok := values[section].(map[string]any)
		if !ok {
			sub = map[string]any{}
			values[section] = sub
		}
		sub[key] = val
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(values); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (g GitHub) RequireToken() error {
	if g.Token == "" {
		return ErrNoToken
	}
	return nil
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)

		if srcIsMap && dstIsMap {
			merge(dstMap, srcMap)
			continue
		}

		dst[k] = v
	}
}
