// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FeatherTrace")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "feathertrace.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("sources", []map[string]any{})

	viper.SetDefault("output.root", "processed/")
	viper.SetDefault("output.template", "{date}_{location}_{species_cn}_{confidence}_{filename}")
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "feathertrace.db")

	viper.SetDefault("processing.workers", 4)
	viper.SetDefault("processing.batchsize", 8)
	viper.SetDefault("processing.croppadding", 10)
	viper.SetDefault("processing.targetsize", 640)
	viper.SetDefault("processing.detectionconfidence", 0.5)
	viper.SetDefault("processing.blurthreshold", 0.0)
	viper.SetDefault("processing.tempdir", "")

	viper.SetDefault("recognition.mode", "auto")
	viper.SetDefault("recognition.topk", 5)
	viper.SetDefault("recognition.alternativesthreshold", 70.0)
	viper.SetDefault("recognition.lowconfidencethreshold", 30.0)
	viper.SetDefault("recognition.allowlistpath", "config/china_bird_list.txt")
	viper.SetDefault("recognition.foreignlistpath", "config/foreign_countries.txt")
	viper.SetDefault("recognition.serviceurl", "http://127.0.0.1:8000")
	viper.SetDefault("recognition.device", "auto")

	viper.SetDefault("taxonomy.iocspreadsheetpath", "data/ioc_list.xlsx")
}
