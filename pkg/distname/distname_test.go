package distname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Dist
	}{
		{
			name: "client sdist",
			path: "/tmp/dist/chromadb_client-1.0.0.tar.gz",
			want: Dist{Base: "chromadb_client-1.0.0.tar.gz", Name: "chromadb_client", Version: "1.0.0", Kind: KindClient},
		},
		{
			name: "full sdist",
			path: "dist/chromadb-1.0.0.tar.gz",
			want: Dist{Base: "chromadb-1.0.0.tar.gz", Name: "chromadb", Version: "1.0.0", Kind: KindFull},
		},
		{
			name: "dashed sdist name",
			path: "python-dateutil-2.8.2.tar.gz",
			want: Dist{Base: "python-dateutil-2.8.2.tar.gz", Name: "python-dateutil", Version: "2.8.2", Kind: KindFull},
		},
		{
			name: "wheel",
			path: "chromadb-0.5.3-py3-none-any.whl",
			want: Dist{Base: "chromadb-0.5.3-py3-none-any.whl", Name: "chromadb", Version: "0.5.3", Wheel: true, Kind: KindFull},
		},
		{
			name: "client wheel",
			path: "chromadb_client-0.5.3-py3-none-any.whl",
			want: Dist{Base: "chromadb_client-0.5.3-py3-none-any.whl", Name: "chromadb_client", Version: "0.5.3", Wheel: true, Kind: KindClient},
		},
		{
			name: "tgz suffix",
			path: "mypkg-2.0rc1.tgz",
			want: Dist{Base: "mypkg-2.0rc1.tgz", Name: "mypkg", Version: "2.0rc1", Kind: KindFull},
		},
		{
			name: "no version",
			path: "snapshot.tar.gz",
			want: Dist{Base: "snapshot.tar.gz", Name: "snapshot", Kind: KindFull},
		},
		{
			name: "dash but no digit after",
			path: "my-package.tar.gz",
			want: Dist{Base: "my-package.tar.gz", Name: "my-package", Kind: KindFull},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.path))
		})
	}
}

func TestIsClient(t *testing.T) {
	assert.True(t, IsClient("chromadb_client-1.0.0.tar.gz"))
	assert.True(t, IsClient("client-build.whl"))
	assert.False(t, IsClient("chromadb-1.0.0.tar.gz"))
	// Substring match is deliberately exact, mirroring the release script.
	assert.False(t, IsClient("chromadb_CLIENT-1.0.0.tar.gz"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "chromadb_client", Normalize("ChromaDB-Client"))
	assert.Equal(t, "python_dateutil", Normalize("python-dateutil"))
	assert.Equal(t, "a_b_c", Normalize("a-_.b__c"))
}

func TestImportName(t *testing.T) {
	assert.Equal(t, "chromadb", ImportName("chromadb_client"))
	assert.Equal(t, "chromadb", ImportName("chromadb-client"))
	assert.Equal(t, "chromadb", ImportName("chromadb"))
	assert.Equal(t, "requests", ImportName("requests"))
	// A bare "client" dist keeps its own name rather than stripping to nothing.
	assert.Equal(t, "client", ImportName("client"))
}
