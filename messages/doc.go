/*
Package messages defines the message model for a conversation thread.

A thread is an ordered, append-only sequence of Message values. Each Message
is an envelope (run and turn identifiers, step counter, sender, timestamp,
metadata) around one of a closed set of payload kinds:

  - Instructions: system instructions for the model
  - UserMessage: caller input
  - AssistantMessage: model output, free text or a structured payload
  - ToolCallMessage: tool invocations requested by the model
  - ToolResponse: the successful result of one tool call
  - Retry: a failure descriptor fed back to the model, either answering a
    failed tool call or prompting the model to repair invalid output

The payload kinds form a sealed union through unexported marker methods:
ModelMessage for anything that can appear in a thread, Request for messages
that flow toward the model, Response for messages produced by it.

Messages are immutable once appended to a thread; the envelope and payloads
serialize with a "kind" discriminator so mixed sequences round-trip through
JSON.
*/
package messages
