package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readability
var (
	IdpDomain        string   // base URL of the identity provider's hosted UI
	Issuer           string   // OIDC issuer URL; when set, endpoints are discovered instead of derived from the hosted domain
	ClientID         string   // OAuth2 client id (public client, no secret)
	Scopes           []string // OAuth2 scopes requested on sign-in
	RedirectURI      string   // redirect URI registered for the client (loopback)
	APIBaseURL       string   // base URL of the measurement/device backend
	GroupsClaim      string   // token claim holding the group memberships
	StorageDir       string   // directory for the persisted credential set (default: user config dir)
	LogLevel         string   // sets the log level (zap log level values)
	LogFormat        string   // text vs json
	LogConfig        string   // zapfilter rules, e.g. "debug:telemetry.* info:*"
	PollInterval     string   // measurement poll cadence
	RetentionSpan    string   // span of the in-memory measurement window
	DisplaySpan      string   // span of the scrub display window
	ChunkDuration    string   // duration covered by one ECG chunk
	MeasurementLimit int      // page size cap for the measurement endpoint
	CallbackTimeout  string   // how long the login command waits for the redirect
)
