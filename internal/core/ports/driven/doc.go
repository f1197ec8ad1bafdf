// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the document extractor, embedding
// provider, chat LLM, rerank model, vector store, relational stores
// and the background task dispatcher.
package driven
