package utils

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

const (
	// ConfigFileName is the configuration file looked up in the working and global directories.
	ConfigFileName = "config.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding global configuration.
	GlobalConfigDirectoryName = ".rmtree"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// PasswordEnvironmentVariable supplies the server password when configuration omits it.
	PasswordEnvironmentVariable = "RMTREE_PASSWORD"
)

const (
	// LoggerInitializationFailedMessageFormat reports a logger that could not be built.
	LoggerInitializationFailedMessageFormat = "initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes fatal command failures.
	ApplicationExecutionFailedMessage = "rmtree failed"
	// WarningFailedNodeFormat reports a node whose remote data could not be fetched.
	WarningFailedNodeFormat = "Warning: %s of %s could not be fetched: %v\n"
)
