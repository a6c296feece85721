package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/polzovatel/webeye/internal/dom"
	"github.com/polzovatel/webeye/internal/snapshot"
)

const (
	keyActionTimeout = "browser_action_timeout_ms"
	keyInputTimeout  = "input_text_timeout_ms"
	keyNavTimeout    = "navigation_timeout_ms"
	keySettle        = "select2_settle_ms"
	keySettleMode    = "select2_settle_mode"
	keyHeadless      = "headless"
	keyIDAttr        = "id_attr"

	headlessEnv = "AGENT_HEADLESS"
)

// Settings holds the timeouts and browser switches. Every key can be set in a
// config file or through the upper-cased environment variable of the same name.
type Settings struct {
	BrowserActionTimeout time.Duration
	InputTextTimeout     time.Duration
	NavigationTimeout    time.Duration
	Select2Settle        time.Duration
	Select2SettleMode    dom.SettleMode
	Headless             bool
	IDAttr               string
}

func defaults(v *viper.Viper) {
	v.SetDefault(keyActionTimeout, dom.DefaultActionTimeout.Milliseconds())
	v.SetDefault(keyInputTimeout, dom.DefaultInputTextTimeout.Milliseconds())
	v.SetDefault(keyNavTimeout, 30000)
	v.SetDefault(keySettle, dom.DefaultSettleDelay.Milliseconds())
	v.SetDefault(keySettleMode, string(dom.SettleFixed))
	v.SetDefault(keyHeadless, false)
	v.SetDefault(keyIDAttr, snapshot.DefaultIDAttr)
}

// Load reads settings from the environment and, when path is not empty, from
// the config file at path. Environment values win.
func Load(path string) (Settings, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	if err := v.BindEnv(keyHeadless, headlessEnv, strings.ToUpper(keyHeadless)); err != nil {
		return Settings{}, fmt.Errorf("bind env: %w", err)
	}
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	s := Settings{
		BrowserActionTimeout: time.Duration(v.GetInt64(keyActionTimeout)) * time.Millisecond,
		InputTextTimeout:     time.Duration(v.GetInt64(keyInputTimeout)) * time.Millisecond,
		NavigationTimeout:    time.Duration(v.GetInt64(keyNavTimeout)) * time.Millisecond,
		Select2Settle:        time.Duration(v.GetInt64(keySettle)) * time.Millisecond,
		Select2SettleMode:    dom.SettleMode(strings.ToLower(strings.TrimSpace(v.GetString(keySettleMode)))),
		Headless:             v.GetBool(keyHeadless),
		IDAttr:               strings.TrimSpace(v.GetString(keyIDAttr)),
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch s.Select2SettleMode {
	case dom.SettleFixed, dom.SettlePoll:
	default:
		return fmt.Errorf("%s: unknown mode %q (use fixed or poll)", keySettleMode, s.Select2SettleMode)
	}
	if s.BrowserActionTimeout <= 0 || s.InputTextTimeout <= 0 || s.NavigationTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if s.Select2Settle < 0 {
		return fmt.Errorf("%s must not be negative", keySettle)
	}
	if s.IDAttr == "" {
		return fmt.Errorf("%s must not be empty", keyIDAttr)
	}
	return nil
}

// DOM returns the element index configuration. A zero settle delay turns
// settling off.
func (s Settings) DOM() dom.Config {
	settle := s.Select2Settle
	if settle == 0 {
		settle = -1
	}
	return dom.Config{
		IDAttr:           s.IDAttr,
		ActionTimeout:    s.BrowserActionTimeout,
		InputTextTimeout: s.InputTextTimeout,
		SettleDelay:      settle,
		SettleMode:       s.Select2SettleMode,
		ReadOptions:      dom.ReadSelect2Options,
	}
}
