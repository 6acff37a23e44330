package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/flagx"
	"github.com/dmitrijs2005/soundcircle/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify the settle timeout either
// as a string like "15s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	LocalStorePath     string         `json:"local_store_path"`
	AuthSettleTimeout  timex.Duration `json:"auth_settle_timeout"`
}

// parseJson overlays Config with values loaded from a JSON file named by the
// -c/-config flag. Missing flag means no JSON is loaded. Read or unmarshal
// errors panic; the caller may recover if desired.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.LocalStorePath = jc.LocalStorePath
	cfg.AuthSettleTimeout = time.Duration(jc.AuthSettleTimeout.Duration)
}
