package common

// AccessTokenHeaderName is the gRPC metadata key carrying the admin token.
const AccessTokenHeaderName = "access_token"

// FetchTrainsToken is the fixed request token asking the server for the
// current train snapshot.
const FetchTrainsToken = "getTrains"

// DefaultPort is the well-known port shared by server and client.
const DefaultPort = 8800
