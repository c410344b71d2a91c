package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
)

// SCPConfig holds the remote host settings.
type SCPConfig struct {
	Host                string
	Port                int
	User                string
	Password            string
	KeyFile             string
	KnownHostsFile      string
	InsecureSkipHostKey bool
	RemoteDir           string
	Timeout             time.Duration
}

// copier sends one file to the remote directory.
type copier interface {
	Copy(dir, name string, size int64, mode os.FileMode, r io.Reader) error
	Close() error
}

type scpUploader struct {
	cfg  SCPConfig
	dial func(ctx context.Context) (copier, error)
	log  logger.Logger
}

// NewSCP builds an uploader that copies files over SSH with the scp sink protocol.
func NewSCP(cfg SCPConfig, log logger.Logger) (Uploader, error) {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.User) == "" {
		return nil, errors.New("scp host and user are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "."
	}

	sshCfg, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	return &scpUploader{
		cfg: cfg,
		dial: func(ctx context.Context) (copier, error) {
			return dialSSH(ctx, addr, sshCfg)
		},
		log: logger.Ensure(log),
	}, nil
}

func clientConfig(cfg SCPConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		raw, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read scp key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse scp key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("scp requires a password or a key file")
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case cfg.KnownHostsFile != "":
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	case cfg.InsecureSkipHostKey:
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicit operator opt-in
	default:
		return nil, errors.New("scp requires known_hosts_file or insecure_skip_host_key")
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}, nil
}

func (s *scpUploader) Service() domain.UploadService { return domain.UploadSCP }

func (s *scpUploader) Upload(ctx context.Context, paths map[string]string) (*domain.UploadResult, error) {
	result := &domain.UploadResult{Service: domain.UploadSCP}

	conn, err := s.dial(ctx)
	if err != nil {
		return result, fmt.Errorf("scp connect %s: %w", s.cfg.Host, err)
	}
	defer conn.Close()

	for _, key := range orderedKeys(paths) {
		file, err := s.copyOne(conn, key, paths[key])
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, file)
	}
	result.Success = true
	return result, nil
}

func (s *scpUploader) copyOne(conn copier, key, localPath string) (domain.UploadedFile, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("stat %s: %w", localPath, err)
	}

	name := filepath.Base(localPath)
	if err := conn.Copy(s.cfg.RemoteDir, name, info.Size(), 0o644, f); err != nil {
		return domain.UploadedFile{}, fmt.Errorf("scp %s: %w", name, err)
	}

	remote := path.Join(s.cfg.RemoteDir, name)
	s.log.InfoObj("scp upload completed", "upload_meta", map[string]any{
		"key":  key,
		"host": s.cfg.Host,
		"path": remote,
	})
	return domain.UploadedFile{
		Key:      key,
		Name:     name,
		MimeType: mimeTypeOf(localPath),
		ViewURL:  fmt.Sprintf("scp://%s@%s:%d/%s", s.cfg.User, s.cfg.Host, s.cfg.Port, strings.TrimPrefix(remote, "/")),
	}, nil
}

// sshCopier runs one `scp -t` session per file over a shared SSH connection.
type sshCopier struct {
	client *ssh.Client
}

func dialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (copier, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &sshCopier{client: ssh.NewClient(c, chans, reqs)}, nil
}

func (s *sshCopier) Copy(dir, name string, size int64, mode os.FileMode, r io.Reader) error {
	sess, err := s.client.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return err
	}
	if err := sess.Start("scp -qt " + shellQuote(dir)); err != nil {
		return fmt.Errorf("start scp: %w", err)
	}

	if err := sendFile(stdin, bufio.NewReader(stdout), name, size, mode, r); err != nil {
		stdin.Close()
		return err
	}
	stdin.Close()
	return sess.Wait()
}

func (s *sshCopier) Close() error {
	return s.client.Close()
}

// sendFile speaks the sink side of the scp protocol: wait for the ready ack,
// send the C header, the content and a trailing zero byte, checking an ack after each.
func sendFile(w io.Writer, acks *bufio.Reader, name string, size int64, mode os.FileMode, r io.Reader) error {
	if err := readAck(acks); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "C%04o %d %s\n", mode.Perm(), size, name); err != nil {
		return fmt.Errorf("send header: %w", err)
	}
	if err := readAck(acks); err != nil {
		return err
	}
	n, err := io.Copy(w, r)
	if err != nil {
		return fmt.Errorf("send content: %w", err)
	}
	if n != size {
		return fmt.Errorf("sent %d bytes, expected %d", n, size)
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return fmt.Errorf("send terminator: %w", err)
	}
	return readAck(acks)
}

func readAck(r *bufio.Reader) error {
	code, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read scp ack: %w", err)
	}
	switch code {
	case 0:
		return nil
	case 1, 2:
		msg, _ := r.ReadString('\n')
		return fmt.Errorf("remote scp error: %s", strings.TrimSpace(msg))
	default:
		return fmt.Errorf("unexpected scp ack byte %d", code)
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
