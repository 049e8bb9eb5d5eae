package app

import (
	"github.com/inworld-ai/living-memories-unity-sub003/internal/backend/anthropic"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/backend/local"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/backend/mcp"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/backend/openaiaudio"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/backend/openaichat"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/backend/pgmemory"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// coreModules is the definitive list of component providers compiled into
// the binary.
var coreModules = []registry.Module{
	local.Module{},
	openaichat.Module{},
	anthropic.Module{},
	openaiaudio.Module{},
	mcp.Module{},
	pgmemory.Module{},
}
