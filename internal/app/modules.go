package app

import (
	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/modules/filegen"
	"github.com/specialistvlad/sandforge/modules/httpgen"
	"github.com/specialistvlad/sandforge/modules/socketiogen"
)

// coreBackends is the definitive list of generator backends compiled into
// the sandforge binary.
var coreBackends = []generator.Module{
	filegen.Module{},
	httpgen.Module{},
	socketiogen.Module{},
}
