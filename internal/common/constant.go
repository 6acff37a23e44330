package common

// AccessTokenHeaderName is the HTTP header used to carry the access token on
// outbound API requests.
const AccessTokenHeaderName = "Authorization"

// TokenExpiredMessage is the body sent with a 401 when the access token is
// expired rather than invalid, so clients can decide to refresh.
const TokenExpiredMessage = "token expired"
