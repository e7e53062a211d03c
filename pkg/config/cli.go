package config

import "github.com/alecthomas/kong"

type Cli struct {
	Version kong.VersionFlag

	LogLevel   string `kong:"name=log-level,env=LOG_LEVEL,default=info,help='Set log level.'"`
	LogJSON    bool   `kong:"name=log-json,env=LOG_JSON,default=false,help='Enable JSON logging output.'"`
	LogCaller  bool   `kong:"name=log-caller,env=LOG_CALLER,default=false,help='Add file:line of the caller to log output.'"`
	LogNoColor bool   `kong:"name=log-nocolor,env=LOG_NOCOLOR,default=false,help='Disable colorized output.'"`

	Extensions    string `kong:"name=extensions,env=NESTFS_EXTENSIONS,help='Archive extensions to detect, separated by | (eg. zip|tar.gz). Detects all supported formats if empty.'"`
	CreateParents bool   `kong:"name=create-parents,env=NESTFS_CREATE_PARENTS,default=false,help='Create missing parent directories and archive files.'"`
	MaxIdle       int    `kong:"name=max-idle,env=NESTFS_MAX_IDLE,default=64,help='Maximum number of unused archives kept mounted.'"`
	WorkDir       string `kong:"name=chdir,short=C,type=path,env=NESTFS_CHDIR,help='Resolve relative paths against this directory.'"`

	Ls      LsCmd      `kong:"cmd,name=ls,help='List the members of a directory or archive.'"`
	Cat     CatCmd     `kong:"cmd,name=cat,help='Print the content of files.'"`
	Stat    StatCmd    `kong:"cmd,name=stat,help='Display the status of a path.'"`
	Mkdir   MkdirCmd   `kong:"cmd,name=mkdir,help='Create a directory or an empty archive.'"`
	Rm      RmCmd      `kong:"cmd,name=rm,help='Remove a file, directory or archive.'"`
	Cp      CpCmd      `kong:"cmd,name=cp,help='Copy files, directories and archives.'"`
	Mv      MvCmd      `kong:"cmd,name=mv,help='Move files, directories and archives.'"`
	Resolve ResolveCmd `kong:"cmd,name=resolve,help='Print the URI a path resolves to.'"`
	Extract ExtractCmd `kong:"cmd,name=extract,help='Extract an archive at any depth to a local folder.'"`
	Digest  DigestCmd  `kong:"cmd,name=digest,help='Print the digest of files.'"`
	Formats FormatsCmd `kong:"cmd,name=formats,help='List the detected archive extensions.'"`
}

type LsCmd struct {
	Long bool   `kong:"name=long,short=l,default=false,help='Use a long listing format.'"`
	Path string `kong:"arg,optional,name=path,default='.',help='Path to list.'"`
}

type CatCmd struct {
	Paths []string `kong:"arg,required,name=path,help='Files to print.'"`
}

type StatCmd struct {
	Path string `kong:"arg,required,name=path,help='Path to display.'"`
}

type MkdirCmd struct {
	Parents bool   `kong:"name=parents,short=p,default=false,help='Create missing parents, no error if existing.'"`
	Path    string `kong:"arg,required,name=path,help='Directory or archive to create. (eg. ./app.zip/conf)'"`
}

type RmCmd struct {
	Recursive bool   `kong:"name=recursive,short=r,default=false,help='Remove directories and their contents.'"`
	Path      string `kong:"arg,required,name=path,help='Path to remove.'"`
}

type CpCmd struct {
	Recursive bool   `kong:"name=recursive,short=r,default=false,help='Copy directories and archives recursively.'"`
	Raw       bool   `kong:"name=raw,default=false,help='Treat archive files as plain files.'"`
	Src       string `kong:"arg,required,name=src,help='Source path.'"`
	Dst       string `kong:"arg,required,name=dst,help='Destination path.'"`
}

type MvCmd struct {
	Src string `kong:"arg,required,name=src,help='Source path.'"`
	Dst string `kong:"arg,required,name=dst,help='Destination path.'"`
}

type ResolveCmd struct {
	Hierarchical bool     `kong:"name=hierarchical,short=H,default=false,help='Flatten archive separators in the output.'"`
	Paths        []string `kong:"arg,required,name=path,help='Paths to resolve.'"`
}

type ExtractCmd struct {
	Includes []string `kong:"name=include,help='Include a subset of files/dirs from the archive.'"`
	RmDist   bool     `kong:"name=rm-dist,default=false,help='Removes dist folder.'"`
	Source   string   `kong:"arg,required,name=source,help='Source archive. (eg. ./release.zip/app.tar.gz)'"`
	Dist     string   `kong:"arg,required,name=dist,type=path,help='Dist folder. (eg. ./dist)'"`
}

type DigestCmd struct {
	Algorithm string   `kong:"name=algorithm,short=a,default=sha256,enum='sha256,sha384,sha512',help='Digest algorithm.'"`
	Paths     []string `kong:"arg,required,name=path,help='Files to digest.'"`
}

type FormatsCmd struct{}
