// Package speech turns composed scripts into audio artifacts. A primary
// provider is tried first with one retry, then the fallback provider; the
// resulting MP3 is written under the audio directory keyed by job public ID.
package speech
