package binding

// Catalog of concrete binding shapes. Purely descriptive data built
// from the generic maker; none of these carry behavior.

// HTTP type tags are special-cased by the definition layer, so they get
// named constants. Everything else is just a tag.
const (
	TypeHTTPTrigger = "httpTrigger"
	TypeHTTPOutput  = "http"
)

// HTTPTrigger declares the inbound HTTP binding. Extras commonly used:
// "route" (path template), "methods" ([]string), "authLevel".
var HTTPTrigger = MakeWithDefaults(TypeHTTPTrigger, In, map[string]any{
	"authLevel": "anonymous",
})

// HTTPOutput declares the function's HTTP response slot.
var HTTPOutput = Make(TypeHTTPOutput, Out)

// WithRoute sets the path template on an HTTP trigger.
func WithRoute(route string) Option { return WithExtra("route", route) }

// WithMethods restricts an HTTP trigger to the given methods.
func WithMethods(methods ...string) Option { return WithExtra("methods", methods) }

// Storage.
var (
	QueueTrigger = Make("queueTrigger", In)
	Queue        = Make("queue", Out)
	BlobTrigger  = Make("blobTrigger", In)
	BlobInput    = Make("blob", In)
	BlobOutput   = Make("blob", Out)
	TableInput   = Make("table", In)
	TableOutput  = Make("table", Out)
)

// Messaging.
var (
	ServiceBusTrigger = Make("serviceBusTrigger", In)
	ServiceBus        = Make("serviceBus", Out)
	EventHubTrigger   = Make("eventHubTrigger", In)
	EventHub          = Make("eventHub", Out)
	EventGridTrigger  = Make("eventGridTrigger", In)
	EventGrid         = Make("eventGrid", Out)
)

// Timer.
var TimerTrigger = MakeWithDefaults("timerTrigger", In, map[string]any{
	"runOnStartup": false,
})

// WithSchedule sets the CRON expression on a timer trigger.
func WithSchedule(cron string) Option { return WithExtra("schedule", cron) }

// Database.
var (
	CosmosDBTrigger = Make("cosmosDBTrigger", In)
	CosmosDBInput   = Make("cosmosDB", In)
	CosmosDBOutput  = Make("cosmosDB", Out)
	SQLInput        = Make("sql", In)
	SQLOutput       = Make("sql", Out)
)

// Notification.
var (
	SignalR         = Make("signalR", Out)
	SignalRTrigger  = Make("signalRTrigger", In)
	NotificationHub = Make("notificationHub", Out)
	SendGrid        = Make("sendGrid", Out)
)

// WithConnection names the app-setting holding the connection string.
func WithConnection(setting string) Option { return WithExtra("connection", setting) }

// Custom builds a binding of an unrecognized kind; extra carries
// whatever the external binding implementation requires.
func Custom(name, typ string, dir Direction, extra map[string]any, opts ...Option) Binding {
	b := Binding{Name: name, Type: typ, Direction: dir}
	if len(extra) > 0 {
		b.Extra = make(map[string]any, len(extra))
		for k, v := range extra {
			b.Extra[k] = v
		}
	}
	for _, o := range opts {
		o(&b)
	}
	return b
}

// IsHTTPTrigger and IsHTTPOutput are the guards the definition layer
// keys its HTTP arity checks on.
func IsHTTPTrigger(b Binding) bool { return Is(b, TypeHTTPTrigger, In) }
func IsHTTPOutput(b Binding) bool  { return Is(b, TypeHTTPOutput, Out) }
