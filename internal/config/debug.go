package config

import "os"

func IsDebug() bool {
	return os.Getenv("VEXD_DEBUG") == "1"
}
