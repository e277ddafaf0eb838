// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "ContactSync")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/")

	viper.SetDefault("provider.apikey", "")
	viper.SetDefault("provider.baseurl", "https://api.contactprovider.com/v1")
	viper.SetDefault("provider.requestsperminute", 60)
	viper.SetDefault("provider.requestsperhour", 1000)
	viper.SetDefault("provider.maxconcurrent", 5)
	viper.SetDefault("provider.timeout", 30)
	viper.SetDefault("provider.retryattempts", 3)
	viper.SetDefault("provider.retrydelay", 1000)
	viper.SetDefault("provider.debug", false)

	viper.SetDefault("sync.batchsize", 50)
	viper.SetDefault("sync.continueonerror", true)
	viper.SetDefault("sync.namesimilaritythreshold", 0.85)
	viper.SetDefault("sync.cachettl", 0)

	viper.SetDefault("import.enabled", true)
	viper.SetDefault("import.lookbackhours", 24)
	viper.SetDefault("import.pagesize", 100)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "contactsync.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "contactsync")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "contactsync")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("notify.mqtt.enabled", false)
	viper.SetDefault("notify.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("notify.mqtt.topic", "contactsync/events")
	viper.SetDefault("notify.mqtt.username", "")
	viper.SetDefault("notify.mqtt.password", "")

	viper.SetDefault("http.enabled", false)
	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", "8090")
}
