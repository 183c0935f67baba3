package app

const stagingEnv = "staging"

// IsStaging classifies a deployment environment name. An empty name is the
// local default, which is never staging.
func IsStaging(appEnv string) bool {
	if appEnv == "" {
		appEnv = defaultAppEnv
	}
	return appEnv == stagingEnv
}
