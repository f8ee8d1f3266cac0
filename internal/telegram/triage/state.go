package triage

// State 用户当前所处的分拣状态
type State int

const (
	StateIdle State = iota
	StateCollectingAttachments
	StateBatchingForwards
	StateAwaitingMediaGroupText
	StateAwaitingConfirmation
	StateAwaitingEditText
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollectingAttachments:
		return "collecting_attachments"
	case StateBatchingForwards:
		return "batching_forwards"
	case StateAwaitingMediaGroupText:
		return "awaiting_media_group_text"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateAwaitingEditText:
		return "awaiting_edit_text"
	default:
		return "unknown"
	}
}
