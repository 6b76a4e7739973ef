// Package stanza is a session-aware, tool-calling agent runtime.
//
// Stanza wires an LLM provider, a persistent conversation session, a
// directory of executable tool scripts, and an optional retrieval engine
// into a bounded agent loop, all driven by a single YAML configuration.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/candralab/stanza/cmd/stanza@latest
//
// Create a configuration:
//
//	llm:
//	  type: "openai"
//	  model: "gpt-4o-mini"
//	  api_key: "${OPENAI_API_KEY}"
//
//	tools:
//	  dir: "./tools"
//
//	agent:
//	  enable_tools: true
//	  system_prompt: "You are a helpful assistant."
//
// Talk to the agent:
//
//	stanza chat "what is 2+3?" --config config.yaml
//	stanza repl --config config.yaml
//
// # Using as a Go Library
//
// Import the packages you need:
//
//	import (
//	    "github.com/candralab/stanza/agent"
//	    "github.com/candralab/stanza/llms"
//	    "github.com/candralab/stanza/session"
//	    "github.com/candralab/stanza/tools"
//	)
//
// # Key Features
//
//   - Persistent sessions with lossy summarization when the transcript
//     outgrows a token budget
//   - Tools declared as plain shell, Python, or Node scripts with
//     @describe/@option comment markers
//   - A bounded tool-calling loop that always terminates
//   - Cosine-similarity retrieval over in-memory or persistent stores
//   - Providers for Ollama, OpenAI, and Anthropic with streaming support
//
// # Architecture
//
//	User → Orchestrator → LLM Provider
//	            │             │
//	       Session Store   Tool Dispatcher → scripts
//	            │
//	       Retrieval Engine (optional)
package stanza
