package resolve

import (
	"strings"

	"github.com/wippyai/clrmeta/typesys"
)

// platformAssemblies are the system assemblies whose references bind to the
// installed platform version regardless of the version they were built
// against.
var platformAssemblies = map[string]bool{}

func init() {
	for _, name := range []string{
		"mscorlib",
		"netstandard",
		"Microsoft.CSharp",
		"Microsoft.VisualBasic",
		"PresentationCore",
		"PresentationFramework",
		"System",
		"System.Collections",
		"System.ComponentModel",
		"System.Configuration",
		"System.Console",
		"System.Core",
		"System.Data",
		"System.Drawing",
		"System.IO",
		"System.Linq",
		"System.Net.Http",
		"System.Numerics",
		"System.Private.CoreLib",
		"System.Reflection",
		"System.Runtime",
		"System.Runtime.Extensions",
		"System.Runtime.InteropServices",
		"System.Text.Encoding",
		"System.Threading",
		"System.Threading.Tasks",
		"System.Web",
		"System.Windows.Forms",
		"System.Xml",
		"System.Xml.Linq",
		"WindowsBase",
	} {
		platformAssemblies[strings.ToLower(name)] = true
	}
}

// IsPlatformAssembly reports whether name is a well-known system assembly.
func IsPlatformAssembly(name string) bool {
	return platformAssemblies[strings.ToLower(name)]
}

// unify rewrites the version of a platform assembly identity to the
// configured platform version. It reports whether id changed.
func (r *Resolver) unify(id *typesys.AssemblyIdentity) bool {
	v := r.opts.PlatformVersion
	if v == (typesys.Version{}) || !IsPlatformAssembly(id.Name) || id.Version == v {
		return false
	}
	id.Version = v
	return true
}
