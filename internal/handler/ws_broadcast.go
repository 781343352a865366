package handler

// BroadcastAdventureEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastAdventureEvent(adventureID string, eventType string, data any) {
	h.BroadcastToAdventure(adventureID, WSEvent{
		Type:        eventType,
		AdventureID: adventureID,
		Data:        data,
	})
}
