package prompts

// EmptyResponseFallback is the user-facing message returned when the
// model finishes a request without producing any content.
const EmptyResponseFallback = "I wasn't able to put together a response this time. Please try again."
