// Package auth provides operator accounts and bearer tokens for the console API.
//
// It implements a three-tier role model (viewer → operator → admin) with:
//   - Argon2id password hashing in PHC string format
//   - HS256 JWT bearer tokens validated by signature only
//   - Static role-permission mapping (compile-time, no database lookup)
//
// On first start SeedAdmin creates an "admin" account with a random password
// that is logged once.
package auth
