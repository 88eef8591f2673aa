// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the streaming endpoints.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Endpoint needs a session and the token was missing, invalid or expired.
	InvalidLobbyIDError   = 3003 // Target lobby ID specified in the WS URL does not exist.
	LobbyDeletedError     = 3004 // The streamed lobby was deleted while the client watched it.
)

// Subprotocol is the only WebSocket subprotocol the server speaks.
const Subprotocol = "skillstake"
