package config

// DefaultLanguages is used when configuration provides no language list.
func DefaultLanguages() []LanguageDefinition {
	return []LanguageDefinition{
		{
			ID:         "cpp",
			SourceExt:  "cpp",
			BinaryFile: "main",
			Compile:    "g++ -O2 -std=c++17 -pipe -o {bin} {src} {extraFlags}",
			Run:        "{bin}",
		},
		{
			ID:         "c",
			SourceExt:  "c",
			BinaryFile: "main",
			Compile:    "gcc -O2 -std=c11 -pipe -o {bin} {src} {extraFlags} -lm",
			Run:        "{bin}",
		},
		{
			ID:             "python",
			SourceExt:      "py",
			Run:            "python3 -S {src}",
			TimeMultiplier: 2,
		},
		{
			ID:              "javascript",
			SourceExt:       "js",
			Run:             "node {src}",
			TimeMultiplier:  2,
			UnlimitedMemory: true,
		},
		{
			ID:              "java",
			SourceExt:       "java",
			SourceFile:      "Main.java",
			BinaryFile:      "Main.class",
			Compile:         "javac -encoding UTF-8 -d {build} {src}",
			Run:             "java -Xss64m -cp {build} Main",
			TimeMultiplier:  2,
			UnlimitedMemory: true,
		},
		{
			ID:         "go",
			SourceExt:  "go",
			BinaryFile: "main",
			Compile:    "go build -o {bin} {src}",
			Run:        "{bin}",
			Env:        []string{"GOCACHE={dir}/.gocache", "GOPATH={dir}/.gopath", "CGO_ENABLED=0"},
		},
	}
}
