// Package auth issues and validates stateful JWTs. Every token is anchored
// by a TokenRecord row; deleting the row revokes the token immediately,
// regardless of its exp claim.
//
// Token lifecycle:
//   - Login tokens (class auth) are minted by GenerateToken and carry a
//     renewal window (rexp). ValidateToken reports OK, EXPIRED (renewable),
//     DEAD (past the renewal window), INVALID or INACTIVATED_USER.
//   - Reset and signup tokens (class anonymous) are single use. They are
//     found through the account back-reference (ResetTokenID,
//     SignupTokenID), issuing a new one orphans the previous token.
//   - Anonymous sessions are login tokens with no account, they are only
//     issued when the configuration allows it.
//
// Keys:
//   - A signer key that names a readable file is an RSA private key (RS256)
//     and requires a public key. Anything else is an HMAC secret (HS256).
//     Keys are resolved on every sign and verify so a key change takes
//     effect without a restart.
//
// Transport:
//   - Operations is the transport independent surface, TokenController
//     mounts it on a go-router app and middleware/jwtware protects routes.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before tokens are signed. Decorators may add
//     metadata while protected claims (sub, iss, aud, exp, jti, rid, rexp)
//     remain immutable.
package auth
