package domain

// TransferIdempotencyKey scopes a client key to the user who sent it.
func TransferIdempotencyKey(userID, clientKey string) string {
	return "transfer:" + userID + ":" + clientKey
}
