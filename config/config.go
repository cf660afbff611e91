// Package config loads engine configuration through Viper, unifying config
// files, environment variables, and defaults into the engine's plain Config
// struct.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/JakeFAU/spinneret"
)

// Settings is everything the loader produces: the engine knobs plus the
// optional monitor listen address.
type Settings struct {
	Crawl       spinneret.Config
	MonitorAddr string
	Development bool
}

// Load reads configuration with Viper. It looks for a config file named
// "spinneret" (any supported extension) in the working directory and
// $HOME/.spinneret, and honors SPINNERET_-prefixed environment variables
// (e.g. SPINNERET_CRAWLER_FETCH_WORKERS=16). A missing config file is not
// an error; defaults and the environment apply.
func Load() (Settings, error) {
	v := viper.New()

	v.SetConfigName("spinneret")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.spinneret")

	v.SetDefault("crawler.fetch_workers", spinneret.DefaultFetchWorkers)
	v.SetDefault("crawler.parse_workers", spinneret.DefaultParseWorkers)
	v.SetDefault("crawler.handoff_capacity", spinneret.DefaultHandoffCapacity)
	v.SetDefault("crawler.per_key_concurrency", spinneret.DefaultPerKeyConcurrency)
	v.SetDefault("crawler.politeness_delay", "0s")
	v.SetDefault("crawler.user_agent", spinneret.DefaultUserAgent)
	v.SetDefault("crawler.request_timeout", "15s")
	v.SetDefault("crawler.checkpoint_interval", "0s")
	v.SetDefault("crawler.checkpoint_every", 0)
	v.SetDefault("monitor.addr", "")
	v.SetDefault("development", false)

	v.SetEnvPrefix("SPINNERET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
		// missing file is fine; defaults and environment apply
	}

	return Settings{
		Crawl: spinneret.Config{
			FetchWorkers:       v.GetInt("crawler.fetch_workers"),
			ParseWorkers:       v.GetInt("crawler.parse_workers"),
			HandoffCapacity:    v.GetInt("crawler.handoff_capacity"),
			PerKeyConcurrency:  v.GetInt("crawler.per_key_concurrency"),
			PolitenessDelay:    v.GetDuration("crawler.politeness_delay"),
			UserAgent:          v.GetString("crawler.user_agent"),
			RequestTimeout:     v.GetDuration("crawler.request_timeout"),
			CheckpointInterval: v.GetDuration("crawler.checkpoint_interval"),
			CheckpointEvery:    v.GetInt("crawler.checkpoint_every"),
		},
		MonitorAddr: v.GetString("monitor.addr"),
		Development: v.GetBool("development"),
	}, nil
}
