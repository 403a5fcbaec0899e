package config

const (
	EnvPrefix = "sugarcraft"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
