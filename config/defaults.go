package config

const (
	DefaultOllamaHost = "http://localhost:11434"
	DefaultModel      = "llama3.1:latest"
	DefaultListen     = "127.0.0.1:11500"
)

func DefaultSettings() *Settings {
	return &Settings{
		DataDirectory: "~/.local/share/llamabridge",
		Ollama: OllamaConfig{
			Host:         DefaultOllamaHost,
			DefaultModel: DefaultModel,
			StallTimeout: "0s",
		},
		Server: ServerConfig{
			Listen: DefaultListen,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func GenerateSettingsTemplate() string {
	return `# llamabridge configuration
# Location: ~/.config/llamabridge/settings.toml
# This file uses TOML format: https://toml.io

# Directory for the instance lock and logs
data_directory = "~/.local/share/llamabridge"

[ollama]
# Ollama server URL
host = "http://localhost:11434"

# Model used by "llamabridge chat" when -m is not given
default_model = "llama3.1:latest"

# Give up on a chat when the daemon sends nothing for this long.
# "0s" waits forever; a stalled daemon then blocks every other request.
stall_timeout = "0s"

[server]
# Address for "llamabridge serve": host:port or unix:///path/to.sock
listen = "127.0.0.1:11500"

[log]
# debug, info, warn, error
level = "info"

# Log file (optional). LLAMABRIDGE_DEBUG=1 logs to <data_directory>/debug.log
# file = "~/.local/share/llamabridge/bridge.log"
`
}
