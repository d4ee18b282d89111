package common

// IdempotencyKeyHeaderName is the HTTP header used to carry the idempotency
// key on mutating requests, so a retried request cannot double-apply.
const IdempotencyKeyHeaderName = "Idempotency-Key"

// AccessTokenHeaderName is the HTTP header used to carry the access token.
const AccessTokenHeaderName = "Authorization"
