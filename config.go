package relfreq

import (
	"github.com/spf13/viper"
)

func loadConfig() {
	viper.SetConfigName("relfreqrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.relfreq")

	setupDefaults()

	viper.ReadInConfig()

	viper.SetEnvPrefix("relfreq")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"split_size":           100 * 1024 * 1024, // Default input split size is 100Mb
		"map_bin_size":         512 * 1024 * 1024, // Default map bin size is 512Mb
		"num_reducers":         10,                // Number of reduce partitions
		"max_concurrency":      500,               // Maximum number of concurrent executors
		"working_location":     ".",
		"max_token_length":     100, // Tokens longer than this are silently truncated
		"clear_output":         true,
		"cleanup":              false,
		"verbose":              false,
		"db_path":              "",
		"lambda_function_name": "relfreq_function",
		"lambda_role_name":     "relfreq_role",
		"lambda_memory":        1500,
		"lambda_timeout":       180,
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}

	aliases := map[string]string{
		"verbose":          "v",
		"working_location": "o",
		"num_reducers":     "r",
	}
	for key, alias := range aliases {
		viper.RegisterAlias(alias, key)
	}
}
