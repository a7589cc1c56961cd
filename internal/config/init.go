package config

import (
	"fmt"
	"os"
)

const exampleConfig = `version: "1.0"

repository:
  path: ./data-repo
  url: https://github.com/example/weather-data.git
  mainline_branch: main
  data_branch: data
  token_env: GITHUB_TOKEN
  author_name: fetchpub
  author_email: fetchpub@example.com
  commit_message: Update data snapshot

fetch:
  setup:
    - [pip, install, -r, requirements.txt]
  command: [python, cwa_now_data_crawler.py]
  output_dir: now_data_github
  credential_env: CWB_API_KEY
  timeout: 10m

schedule:
  every: 1h

lock:
  file: /tmp/fetchpub.lock

journal:
  path: ./fetchpub.db

notify:
  enabled: false
  nats_url: nats://127.0.0.1:4222
  subject: fetchpub.runs

admin:
  enabled: true
  addr: :8085

logging:
  level: info
  format: text
`

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
