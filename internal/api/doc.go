// Package api serves the chat backend over HTTP with gin.
//
// Routes:
//
//	GET  /health                  liveness probe, {"status":"ok"}
//	GET  /completions             ?model=&messages=&messages=&temperature=&maxTokens=
//	POST /embeddings/refresh      ?mode=bulk|incremental|skip, starts a background refresh
//	GET  /status                  store counts and the last refresh run
//
// Each message parameter is a JSON object {"role": ..., "content": ...}. Input
// errors are answered with 400 and {"error": "..."}; everything else that
// fails is a 500.
package api
