// Package local provides deterministic, dependency-free backends for offline
// runs and demos: text-in-audio STT, tone TTS, a template LLM, a hashed
// bag-of-words embedder, in-process memory and a keyword knowledge base.
package local
