package domain

// Event names emitted to frontends.
const (
	EventBuilderChanged     = "builder:changed"
	EventPageSwitched       = "builder:page-switched"
	EventProjectSaved       = "builder:saved"
	EventProjectReloaded    = "builder:reloaded"
	EventProjectImported    = "builder:imported"
	EventAssetsChanged      = "assets:changed"
	EventEditingStarted     = "editor:started"
	EventEditingFinished    = "editor:finished"
	EventTerminalData       = "terminal:data"
	EventConnectionAttempt  = "connection:attempt"
	EventConnectionConfirm  = "connection:confirm"
	EventConnectionFeedback = "connection:feedback"
	EventConnectionReset    = "connection:reset"
	EventConnectionVisual   = "connection:visual"
)
