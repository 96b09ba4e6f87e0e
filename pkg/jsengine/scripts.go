package jsengine

// LogCaptureScript keeps the page's console.log and also appends each call's
// arguments to console.logs. Running it again clears the captured history.
const LogCaptureScript = "if (console.logs === undefined) {" +
	"    console.stdlog = console.log.bind(console);" +
	"    console.logs = [];" +
	"    console.log = function() {" +
	"        console.logs.push(Array.from(arguments));" +
	"        console.stdlog.apply(console, arguments);" +
	"    }" +
	"} else {" +
	"    console.logs.length = 0;" +
	"}"

// LogFetchScript returns the captured history as a JSON array of argument
// arrays.
const LogFetchScript = "JSON.stringify(console.logs)"

// LogResetScript restores console.log and drops the history.
const LogResetScript = "if (console.logs !== undefined) {" +
	"    console.log = console.stdlog;" +
	"    console.logs.length = 0;" +
	"    console.logs = undefined;" +
	"}"
