// Package connection models remote server connections and the credentials used to reach them.
//
// ServerConnection and Credentials are closed sum types: the only implementations are the ones
// declared in this package, and every consumer is expected to type-switch over all of them.
//
//   - ServerConnection: *SonarQube (self-hosted, identified by server URI) or *SonarCloud
//     (identified by organization key)
//   - Credentials: *Token or *UsernameAndPassword
//
// Secret material is carried in *Secret, an explicitly erasable buffer that never prints its
// content and is deep-copied on Clone.
package connection
