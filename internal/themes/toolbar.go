package themes

// The toolbar shown above theme pages to signed-in users. It loads the
// user's name and avatar from /api/me.

const toolbarCSS = `<style id="dz-toolbar-css">
#dz-toolbar{position:fixed;inset:0 0 auto 0;height:32px;z-index:99999;display:flex;align-items:center;gap:4px;padding:0 8px;background:#1d2327;color:#f0f0f1;font:13px/1 system-ui,-apple-system,"Segoe UI",Roboto,sans-serif;box-shadow:0 1px 3px rgba(0,0,0,.3)}
#dz-toolbar a{display:flex;align-items:center;gap:6px;height:32px;padding:0 8px;color:#a7aaad;text-decoration:none}
#dz-toolbar a:hover{color:#72aee6}
#dz-toolbar .dz-toolbar-home{background:#4a1e79;color:#fff;font-weight:600}
#dz-toolbar .dz-toolbar-spacer{flex:1}
#dz-toolbar img{width:16px;height:16px;border-radius:50%}
body.dz-toolbar-on{margin-top:32px!important}
@media (max-width:600px){#dz-toolbar .dz-toolbar-label{display:none}}
</style>
`

const toolbarHTML = `
<nav id="dz-toolbar" aria-label="Site administration">
<a class="dz-toolbar-home" href="/_/admin" title="Dashboard">dz</a>
<a href="/_/admin" title="Dashboard"><span class="dz-toolbar-label">Dashboard</span></a>
<a href="/_/admin/posts" title="New post"><span aria-hidden="true">+</span><span class="dz-toolbar-label">New</span></a>
<span class="dz-toolbar-spacer"></span>
<a href="/_/admin/user/profile" title="Profile"><img id="dz-toolbar-avatar" alt="" hidden><span id="dz-toolbar-user" class="dz-toolbar-label">Profile</span></a>
</nav>
<script>
(function () {
  document.body.classList.add("dz-toolbar-on");
  fetch("/api/me", { credentials: "same-origin" })
    .then(function (r) { return r.json(); })
    .then(function (me) {
      if (!me.authenticated || !me.user) return;
      var img = document.getElementById("dz-toolbar-avatar");
      if (me.user.avatar_url) { img.src = me.user.avatar_url; img.hidden = false; }
      document.getElementById("dz-toolbar-user").textContent = "Howdy, " + (me.user.display_name || "there");
    })
    .catch(function () {});
})();
</script>
`
