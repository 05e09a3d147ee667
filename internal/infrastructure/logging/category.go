package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	Realtime        Category = "Realtime"
	Store           Category = "Store"
	RabbitMQ        Category = "RabbitMQ"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
)

const (
	Startup       SubCategory = "Startup"
	Shutdown      SubCategory = "Shutdown"
	RateLimiting  SubCategory = "RateLimiting"
	CanvasRelay   SubCategory = "CanvasRelay"
	TypingRace    SubCategory = "TypingRace"
	VoiceSignal   SubCategory = "VoiceSignal"
	RoomLifecycle SubCategory = "RoomLifecycle"
	Persistence   SubCategory = "Persistence"
	Request       SubCategory = "Request"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RoomID       ExtraKey = "RoomID"
	ConnectionID ExtraKey = "ConnectionID"
	ErrorMessage ExtraKey = "ErrorMessage"
)
