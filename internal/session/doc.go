// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates chat requests between the UI and the network.
//
// A Manager runs at most one request at a time. Its worker streams the
// response and posts events to a Sink in production order; the UI consumes
// them on its own goroutine and hands fragments to a Conversation, which owns
// the markdown renderer, the display surface and the transcript file.
//
// # Key Types
//
//   - Manager: single-flight request coordinator
//   - Event: Fragment, Done or Failed
//   - Sink: ordered destination for events (Queue, or the TUI program)
//   - Conversation: UI-side state applying events to a Surface
//
// # Usage
//
//	q := session.NewQueue()
//	mgr := session.NewManager(session.Options{Client: client, Sink: q, Parser: parser})
//	defer mgr.Close()
//
//	id, err := conv.Send(mgr, "hello")
//	for {
//	    ev, err := q.Next(ctx)
//	    ...
//	    if done, _ := conv.Apply(ev); done {
//	        mgr.Release(id)
//	        break
//	    }
//	}
package session
