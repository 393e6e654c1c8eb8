package api

import (
	"html/template"
	"time"

	"github.com/hyprpranav/Visitor-Management-System/internal/backend"
	"github.com/hyprpranav/Visitor-Management-System/internal/console"
)

// pageData is what the console templates render.
type pageData struct {
	console.Snapshot
	Backend  backend.ConnectionStatus
	Endpoint string
}

// partials can be re-rendered on their own at /partials/{name}.
var partials = map[string]bool{
	"notifications": true,
	"stats":         true,
	"visitors":      true,
	"admin":         true,
	"pending":       true,
	"pending-badge": true,
	"qr":            true,
}

var funcs = template.FuncMap{
	"badge": func(kind string) string {
		switch kind {
		case "success":
			return "badge-green"
		case "danger":
			return "badge-red"
		case "warning":
			return "badge-yellow"
		}
		return "badge-gray"
	},
	"millis": func(t time.Time) int64 { return t.UnixMilli() },
}

var pageTemplates = template.Must(template.New("page").Funcs(funcs).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Visitor Management Console</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}
a{color:#667eea;text-decoration:none}
a:hover{text-decoration:underline}
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr a{color:#fff}
.hdr-right{display:flex;align-items:center;font-size:13px;gap:10px}
.hdr-dot{width:10px;height:10px;border-radius:50%;display:inline-block}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}
.tabs{display:flex;border-bottom:2px solid #e5e7eb;background:#fff;padding:0 16px}
.tab{padding:12px 20px;font-size:14px;font-weight:500;color:#666;border-bottom:2px solid transparent;margin-bottom:-2px}
.tab.active{color:#667eea;border-bottom-color:#667eea}
.content{max-width:1100px;margin:0 auto;padding:20px}
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:20px;box-shadow:0 2px 4px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:14px;padding-bottom:8px;border-bottom:1px solid #eee}
.form-group{margin-bottom:14px}
.form-group label{display:block;font-size:13px;font-weight:500;margin-bottom:4px;color:#555}
.form-group input,.form-group select,.form-group textarea{width:100%;padding:8px 12px;border:1px solid #ddd;border-radius:6px;font-size:14px}
.form-row{display:grid;grid-template-columns:1fr 1fr;gap:12px}
.btn{display:inline-block;padding:8px 16px;border:none;border-radius:6px;font-size:14px;cursor:pointer;background:#667eea;color:#fff}
.btn-red{background:#ef4444}.btn-gray{background:#9ca3af}
.stats{display:grid;grid-template-columns:repeat(3,1fr);gap:12px}
.stat{background:#f9fafb;border-radius:6px;padding:14px;text-align:center}
.stat strong{display:block;font-size:24px}
table{width:100%;border-collapse:collapse;font-size:13px}
th,td{padding:6px 8px;border-bottom:1px solid #eee;text-align:left}
.badge{display:inline-block;padding:2px 10px;border-radius:20px;font-size:12px;font-weight:500}
.badge-green{background:#dcfce7;color:#166534}
.badge-red{background:#fee2e2;color:#991b1b}
.badge-yellow{background:#fef9c3;color:#854d0e}
.badge-gray{background:#f3f4f6;color:#374151}
.toasts{position:fixed;top:60px;right:20px;z-index:200;width:340px}
.toast{padding:10px 14px;border-radius:6px;margin-bottom:8px;color:#fff;display:flex;justify-content:space-between;gap:8px}
.toast-success{background:#16a34a}.toast-error{background:#dc2626}
.toast button{background:none;border:none;color:#fff;cursor:pointer;font-size:16px}
.feed{position:fixed;top:60px;right:380px;width:380px;max-height:70vh;overflow:auto;z-index:150}
.empty{color:#888;font-style:italic;padding:10px 0}
</style>
</head>
<body>
<div class="hdr">
 <h1>Visitor Management Console</h1>
 <div class="hdr-right">
  <span class="hdr-dot {{if .Backend.Connected}}dot-green{{else}}dot-red{{end}}"></span>
  <span>{{.Endpoint}}</span>
  <span data-partial="pending-badge">{{template "pending-badge" .}}</span>
 </div>
</div>
<div class="tabs">
 <a class="tab {{if eq .Section "dashboard"}}active{{end}}" href="/section/dashboard">Dashboard</a>
 <a class="tab {{if eq .Section "checkin"}}active{{end}}" href="/section/checkin">Check In</a>
 <a class="tab {{if eq .Section "checkout"}}active{{end}}" href="/section/checkout">Check Out</a>
 <a class="tab {{if eq .Section "details"}}active{{end}}" href="/section/details">Visitor Details</a>
 <a class="tab {{if eq .Section "admin"}}active{{end}}" href="/section/admin">Admin</a>
 <a class="tab {{if eq .Section "preregister"}}active{{end}}" href="/preregister">Pre-register</a>
</div>

<div class="toasts" data-partial="notifications">{{template "notifications" .}}</div>
<div class="feed" data-partial="pending">{{template "pending" .}}</div>

<div class="content">
{{if eq .Section "dashboard"}}
 <div class="card">
  <h2>Welcome</h2>
  <p>Choose an action from the tabs above.</p>
 </div>
 <div class="card">
  <h2>Feedback</h2>
  <form method="post" action="/feedback">
   <div class="form-row">
    <div class="form-group"><label>Type</label>
     <select name="type">
      <option value="help" {{if eq .Feedback.Type "help"}}selected{{end}}>Help</option>
      <option value="report" {{if eq .Feedback.Type "report"}}selected{{end}}>Report</option>
      <option value="suggest" {{if eq .Feedback.Type "suggest"}}selected{{end}}>Suggest</option>
     </select></div>
    <div class="form-group"><label>Name</label><input name="name" value="{{.Feedback.Name}}"></div>
   </div>
   <div class="form-group"><label>Email</label><input name="email" type="email" value="{{.Feedback.Email}}"></div>
   <div class="form-group"><label>Message</label><textarea name="message" rows="3">{{.Feedback.Message}}</textarea></div>
   <button class="btn" type="submit">Send feedback</button>
  </form>
 </div>
{{end}}

{{if eq .Section "checkin"}}
 <div class="card">
  <h2>Check In</h2>
  <form method="post" action="/checkin">
   <div class="form-row">
    <div class="form-group"><label>Name *</label><input name="name" value="{{.CheckIn.Name}}"></div>
    <div class="form-group"><label>Contact *</label><input name="contact" value="{{.CheckIn.Contact}}" placeholder="10 digits"></div>
   </div>
   <div class="form-row">
    <div class="form-group"><label>Email</label><input name="email" type="email" value="{{.CheckIn.Email}}"></div>
    <div class="form-group"><label>Company</label><input name="company" value="{{.CheckIn.Company}}"></div>
   </div>
   <div class="form-group"><label>Purpose *</label><input name="purpose" value="{{.CheckIn.Purpose}}"></div>
   <div class="form-row">
    <div class="form-group"><label>Entry method</label>
     <select name="entry_method">
      <option value="manual">Manual</option>
      <option value="qr" {{if eq .CheckIn.EntryMethod "qr"}}selected{{end}}>QR</option>
     </select></div>
    <div class="form-group"><label><input type="checkbox" name="nda_signed" {{if .CheckIn.NDASigned}}checked{{end}}> NDA signed</label></div>
   </div>
   <button class="btn" type="submit">Check In</button>
   <a class="btn btn-gray" href="/section/exit">Exit</a>
  </form>
 </div>
{{end}}

{{if eq .Section "checkout"}}
 <div class="card">
  <h2>Check Out</h2>
  <form method="post" action="/checkout">
   <div class="form-group"><label>Contact *</label><input name="contact" value="{{.CheckOut.Contact}}"></div>
   <button class="btn" type="submit">Check Out</button>
   <a class="btn btn-gray" href="/section/exit">Exit</a>
  </form>
 </div>
{{end}}

{{if eq .Section "details"}}
 <div class="card" data-partial="stats">{{template "stats" .}}</div>
 <div class="card" data-partial="visitors">{{template "visitors" .}}</div>
{{end}}

{{if eq .Section "admin"}}
 <div class="card">
  <h2>Admin</h2>
  <div class="form-row">
   <div class="form-group"><label>Search</label><input id="adminSearch" value="{{.Admin.Search}}" placeholder="Name or contact"></div>
   <div class="form-group"><label>&nbsp;</label><a class="btn" href="/export">Export CSV</a></div>
  </div>
  <form method="post" action="/qr">
   <div class="form-row">
    <div class="form-group"><label>Visitor contact for QR</label><input name="contact"></div>
    <div class="form-group"><label>&nbsp;</label><button class="btn" type="submit">Generate QR</button></div>
   </div>
  </form>
  <div data-partial="qr">{{template "qr" .}}</div>
 </div>
 <div class="card" data-partial="admin">{{template "admin" .}}</div>
{{end}}

{{if eq .Section "preregister"}}
 <div class="card">
  <h2>Pre-register a visit</h2>
  {{if .PreRegistration.Submitted}}
   <p id="preRegMessage">Your pre-registration is awaiting admin approval.</p>
   <p><a class="btn" href="/preregister">Register another visit</a></p>
  {{else}}
  <form method="post" action="/preregister">
   <div class="form-row">
    <div class="form-group"><label>Name *</label><input name="name" value="{{.PreRegistration.Form.Name}}"></div>
    <div class="form-group"><label>Contact *</label><input name="contact" value="{{.PreRegistration.Form.Contact}}"></div>
   </div>
   <div class="form-row">
    <div class="form-group"><label>Email</label><input name="email" type="email" value="{{.PreRegistration.Form.Email}}"></div>
    <div class="form-group"><label>Company</label><input name="company" value="{{.PreRegistration.Form.Company}}"></div>
   </div>
   <div class="form-group"><label>Purpose *</label><input name="purpose" value="{{.PreRegistration.Form.Purpose}}"></div>
   <div class="form-row">
    <div class="form-group"><label>Visit date *</label><input name="visit_date" type="date" value="{{.PreRegistration.Form.VisitDate}}"></div>
    <div class="form-group"><label>Visit time *</label><input name="visit_time" type="time" value="{{.PreRegistration.Form.VisitTime}}"></div>
   </div>
   <div class="form-group"><label><input type="checkbox" name="nda_signed" {{if .PreRegistration.Form.NDASigned}}checked{{end}}> NDA signed</label></div>
   <button class="btn" type="submit">Submit</button>
  </form>
  {{end}}
 </div>
{{end}}
</div>

<script>
var partialTimer = null;

function refreshPartials() {
 var els = document.querySelectorAll('[data-partial]');
 els.forEach(function (el) {
  var name = el.getAttribute('data-partial');
  fetch('/partials/' + name).then(function (r) {
   return r.ok ? r.text() : null;
  }).then(function (html) {
   if (html !== null) el.innerHTML = html;
  }).catch(function () {});
 });
}

function expireToasts() {
 var now = Date.now();
 document.querySelectorAll('.toast[data-expires]').forEach(function (t) {
  if (Number(t.getAttribute('data-expires')) <= now) t.remove();
 });
}
setInterval(expireToasts, 500);

function connect() {
 var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
 var ws = new WebSocket(proto + location.host + '/ws');
 ws.onmessage = function () {
  clearTimeout(partialTimer);
  partialTimer = setTimeout(refreshPartials, 50);
 };
 ws.onclose = function () { setTimeout(connect, 3000); };
}
connect();

var search = document.getElementById('adminSearch');
if (search) {
 var searchTimer = null;
 search.addEventListener('input', function () {
  clearTimeout(searchTimer);
  searchTimer = setTimeout(function () {
   fetch('/admin/search?search=' + encodeURIComponent(search.value), {headers: {'Accept': 'application/json'}});
  }, 500);
 });
}
</script>
</body>
</html>

{{define "notifications"}}{{range .Notifications}}
<div class="toast toast-{{.Kind}}" data-expires="{{millis .ExpiresAt}}">
 <span>{{.Message}}</span>
 <form method="post" action="/notifications/{{.ID}}/dismiss"><button type="submit" title="Dismiss">&times;</button></form>
</div>{{end}}{{end}}

{{define "pending-badge"}}<a href="/notifications">Pre-registrations {{if gt .Pending.Badge 0}}<span class="badge badge-red" id="notificationBadge">{{.Pending.Badge}}</span>{{end}}</a>{{end}}

{{define "pending"}}{{if .Pending.Open}}
<div class="card">
 <h2>Pending pre-registrations <a class="btn btn-gray" href="/notifications/close">Close</a></h2>
 {{range .Pending.Items}}
 <div class="stat" style="text-align:left;margin-bottom:8px">
  <strong style="font-size:15px">{{.Name}}</strong>
  <div>{{.Contact}} · {{.Email}}</div>
  <div>{{.Company}} · {{.Purpose}}</div>
  <div>{{.VisitDate}} {{.VisitTime}}</div>
  <form method="post" action="/preregistrations/{{.ID}}/approve" style="display:inline"><button class="btn" type="submit">Approve</button></form>
  <form method="post" action="/preregistrations/{{.ID}}/decline" style="display:inline"><button class="btn btn-red" type="submit">Decline</button></form>
 </div>
 {{else}}<p class="empty">No pending pre-registrations</p>{{end}}
</div>{{end}}{{end}}

{{define "stats"}}
<h2>Today</h2>
<div class="stats">
 <div class="stat"><strong id="checkedInCount">{{.Stats.CheckedIn}}</strong>Checked in</div>
 <div class="stat"><strong id="checkedOutCount">{{.Stats.CheckedOut}}</strong>Checked out</div>
 <div class="stat"><strong id="totalVisitors">{{.Stats.Total}}</strong>Total</div>
</div>{{end}}

{{define "table"}}
<table id="{{.ID}}">
 <thead><tr><th>Name</th><th>Contact</th><th>Email</th><th>Company</th><th>Purpose</th><th>NDA</th><th>Entry</th><th>Liveness</th><th>Checked in</th><th>Checked out</th><th>Status</th>{{if .Admin}}<th>Overstay</th>{{end}}</tr></thead>
 <tbody>
 {{range .Rows}}<tr>
  <td>{{.Name}}</td><td>{{.Contact}}</td><td>{{.Email}}</td><td>{{.Company}}</td><td>{{.Purpose}}</td>
  <td>{{.NDA}}</td><td>{{.EntryMethod}}</td><td>{{.LivenessCheck}}</td><td>{{.CheckinTime}}</td><td>{{.CheckoutTime}}</td>
  <td><span class="badge {{badge .StatusBadge}}">{{.Status}}</span></td>
  {{if $.Admin}}<td><span class="badge {{badge .OverstayBadge}}">{{.Overstay}}</span></td>{{end}}
 </tr>{{end}}
 </tbody>
</table>
{{if .Empty}}<p class="empty">No visitors found</p>{{end}}{{end}}

{{define "visitors"}}<h2>Visitors</h2>{{template "table" .Visitors}}{{end}}

{{define "admin"}}<h2>All visitors</h2>{{template "table" .Admin}}{{end}}

{{define "qr"}}{{with .QR}}
<div style="margin-top:12px">
 <img src="/qr.png?v={{.Version}}" alt="QR code for {{.Contact}}" width="180" height="180">
 <p><a href="{{.ShareLink}}" target="_blank" rel="noopener">{{.ShareLink}}</a></p>
 <p><a class="btn" href="{{.WhatsAppLink}}" target="_blank" rel="noopener">Share on WhatsApp</a></p>
</div>{{end}}{{end}}
`
