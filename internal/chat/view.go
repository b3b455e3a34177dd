package chat

import "github.com/adamavenir/parley/internal/types"

// buildView renders msg for viewerID. It is the only place a MessageView is
// assembled, so the submit response and the realtime event never drift.
func buildView(
	msg types.Message,
	text string,
	sender, target types.Party,
	call *types.CallRecord,
	thread *types.ThreadPreview,
	viewerID string,
) types.MessageView {
	view := types.MessageView{
		ID:               msg.ID,
		ConversationKey:  msg.ConversationKey,
		ConversationKind: msg.ConversationKind,
		SenderID:         msg.SenderID,
		SenderName:       sender.Name,
		TargetID:         target.ID,
		TargetName:       target.Name,
		IsMine:           msg.SenderID == viewerID,
		Kind:             msg.Kind,
		FileKind:         msg.FileKind,
		Text:             text,
		ReadState:        msg.ReadState,
		Flags:            msg.Flags,
		ExpireAt:         msg.ExpireAt,
		TagUserID:        msg.TagUserID,
		Thread:           thread,
		SourceLanguage:   msg.SourceLanguage,
		CreatedAt:        msg.CreatedAt,
	}
	if call != nil {
		duration := call.Duration
		state := call.State
		view.CallDuration = &duration
		view.CallState = &state
	}
	return view
}
