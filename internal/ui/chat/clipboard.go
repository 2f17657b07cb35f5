// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/atotto/clipboard"
)

// copyToClipboard copies text to the system clipboard. Replaced in tests.
var copyToClipboard = clipboard.WriteAll
